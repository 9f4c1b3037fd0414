// Package catalog maps FIX tag numbers and message type codes to human names.
package catalog

import "strings"

// Field describes one FIX tag.
type Field struct {
	Name        string
	Description string
}

const UnknownDescription = "Unknown field"

var fields = map[string]Field{
	// Standard header / trailer
	"8":    {"BeginString", "FIX Protocol version"},
	"9":    {"BodyLength", "Message length"},
	"10":   {"CheckSum", "Three character checksum"},
	"34":   {"MsgSeqNum", "Message sequence number"},
	"35":   {"MsgType", "Message type"},
	"43":   {"PossDupFlag", "Possible duplicate flag"},
	"49":   {"SenderCompID", "Sender company ID"},
	"50":   {"SenderSubID", "Sender sub ID"},
	"52":   {"SendingTime", "Time of message transmission"},
	"56":   {"TargetCompID", "Target company ID"},
	"57":   {"TargetSubID", "Target sub ID"},
	"97":   {"PossResend", "Possible resend flag"},
	"122":  {"OrigSendingTime", "Original time of message transmission"},
	"1128": {"ApplVerID", "Application version"},

	// Session level
	"7":    {"BeginSeqNo", "First sequence number to resend"},
	"16":   {"EndSeqNo", "Last sequence number to resend"},
	"36":   {"NewSeqNo", "New sequence number"},
	"45":   {"RefSeqNum", "Referenced sequence number"},
	"98":   {"EncryptMethod", "Encryption method"},
	"108":  {"HeartBtInt", "Heartbeat interval (seconds)"},
	"112":  {"TestReqID", "Test request identifier"},
	"123":  {"GapFillFlag", "Gap fill flag"},
	"141":  {"ResetSeqNumFlag", "Reset sequence numbers on logon"},
	"371":  {"RefTagID", "Referenced tag"},
	"372":  {"RefMsgType", "Referenced message type"},
	"373":  {"SessionRejectReason", "Session reject reason"},
	"380":  {"BusinessRejectReason", "Business reject reason"},
	"553":  {"Username", "User name"},
	"554":  {"Password", "Password"},
	"1137": {"DefaultApplVerID", "Default application version"},

	// Orders and executions
	"1":   {"Account", "Account mnemonic"},
	"6":   {"AvgPx", "Average execution price"},
	"11":  {"ClOrdID", "Client order ID"},
	"14":  {"CumQty", "Total number of shares filled"},
	"15":  {"Currency", "Currency"},
	"17":  {"ExecID", "Execution ID"},
	"18":  {"ExecInst", "Execution instructions"},
	"21":  {"HandlInst", "Handling instructions"},
	"22":  {"SecurityIDSource", "Security identifier source"},
	"31":  {"LastPx", "Price of last fill"},
	"32":  {"LastQty", "Number of shares in last fill"},
	"37":  {"OrderID", "Unique order identifier"},
	"38":  {"OrderQty", "Number of shares ordered"},
	"39":  {"OrdStatus", "Order status"},
	"40":  {"OrdType", "Order type"},
	"41":  {"OrigClOrdID", "Original client order ID"},
	"44":  {"Price", "Price per share"},
	"48":  {"SecurityID", "Security identifier"},
	"54":  {"Side", "Side of order (1=Buy, 2=Sell)"},
	"55":  {"Symbol", "Ticker symbol"},
	"58":  {"Text", "Free format text string"},
	"59":  {"TimeInForce", "Time in force"},
	"60":  {"TransactTime", "Time of transaction"},
	"99":  {"StopPx", "Stop price"},
	"100": {"ExDestination", "Execution destination"},
	"103": {"OrdRejReason", "Order reject reason"},
	"102": {"CxlRejReason", "Cancel reject reason"},
	"126": {"ExpireTime", "Order expiry time"},
	"150": {"ExecType", "Execution type"},
	"151": {"LeavesQty", "Amount of shares open for further execution"},
	"167": {"SecurityType", "Security type"},
	"207": {"SecurityExchange", "Security exchange"},
	"434": {"CxlRejResponseTo", "Cancel reject response to"},
	"453": {"NoPartyIDs", "Number of parties"},
	"448": {"PartyID", "Party identifier"},
	"447": {"PartyIDSource", "Party identifier source"},
	"452": {"PartyRole", "Party role"},

	// Market data and quotes
	"117": {"QuoteID", "Quote identifier"},
	"131": {"QuoteReqID", "Quote request identifier"},
	"132": {"BidPx", "Bid price"},
	"133": {"OfferPx", "Offer price"},
	"134": {"BidSize", "Bid quantity"},
	"135": {"OfferSize", "Offer quantity"},
	"146": {"NoRelatedSym", "Number of related symbols"},
	"262": {"MDReqID", "Market data request identifier"},
	"263": {"SubscriptionRequestType", "Subscription request type"},
	"264": {"MarketDepth", "Market depth"},
	"265": {"MDUpdateType", "Market data update type"},
	"267": {"NoMDEntryTypes", "Number of market data entry types"},
	"268": {"NoMDEntries", "Number of market data entries"},
	"269": {"MDEntryType", "Market data entry type"},
	"270": {"MDEntryPx", "Market data entry price"},
	"271": {"MDEntrySize", "Market data entry size"},
	"279": {"MDUpdateAction", "Market data update action"},
	"281": {"MDReqRejReason", "Market data request reject reason"},
}

// Lookup returns the catalog entry for tag. Unknown tags yield "Tag{N}" and
// UnknownDescription.
func Lookup(tag string) Field {
	tag = strings.TrimSpace(tag)
	if f, ok := fields[tag]; ok {
		return f
	}
	return Field{Name: "Tag" + tag, Description: UnknownDescription}
}

// Known reports whether the tag has a catalog entry.
func Known(tag string) bool {
	_, ok := fields[strings.TrimSpace(tag)]
	return ok
}

var msgTypes = map[string]string{
	"0":  "Heartbeat",
	"1":  "Test Request",
	"2":  "Resend Request",
	"3":  "Reject",
	"4":  "Sequence Reset",
	"5":  "Logout",
	"8":  "Execution Report",
	"9":  "Order Cancel Reject",
	"A":  "Logon",
	"D":  "New Order Single",
	"F":  "Order Cancel Request",
	"G":  "Order Cancel/Replace Request",
	"H":  "Order Status Request",
	"R":  "Quote Request",
	"S":  "Quote",
	"V":  "Market Data Request",
	"W":  "Market Data Snapshot",
	"X":  "Market Data Incremental Refresh",
	"Y":  "Market Data Request Reject",
	"b":  "Quote Acknowledgement",
	"j":  "Business Message Reject",
	"n":  "XML Message",
	"AE": "Trade Capture Report",
	"BE": "User Request",
	"BF": "User Response",
}

// MessageType describes a tag 35 value; unknown codes render as "Type {code}".
func MessageType(code string) string {
	if name, ok := msgTypes[code]; ok {
		return name
	}
	return "Type " + code
}

// IsAdmin reports whether the message type belongs to the session layer.
func IsAdmin(code string) bool {
	switch code {
	case "0", "1", "2", "3", "4", "5", "A":
		return true
	}
	return false
}
