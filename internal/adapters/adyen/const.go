package adyen

// Provider is the acquirer provider code handled by this package
const Provider = "adyen"

// Acquirer settings read by the strategy. Key values may be secret:// references.
const (
	SettingMerchantAccount = "adyen_merchant_account"
	SettingAPIKey          = "adyen_api_key"
	SettingHMACKey         = "adyen_hmac_key"
	SettingCheckoutURL     = "adyen_checkout_api_url"
)

// Notification event codes handled by the webhook
const (
	EventAuthorisation = "AUTHORISATION"
	EventCancellation  = "CANCELLATION"
	EventCapture       = "CAPTURE"
	EventRefund        = "REFUND"
)

const (
	resultAuthorised = "Authorised"
	resultCancelled  = "Cancelled"
	resultError      = "Error"
)

type resultGroup int

const (
	resultUnknown resultGroup = iota
	resultPending
	resultDone
	resultCancel
	resultFailed
	resultRefused
)

var resultCodes = map[string]resultGroup{
	"ChallengeShopper": resultPending,
	"IdentifyShopper":  resultPending,
	"Pending":          resultPending,
	"PresentToShopper": resultPending,
	"Received":         resultPending,
	"RedirectShopper":  resultPending,
	"Authorised":       resultDone,
	"Cancelled":        resultCancel,
	"Error":            resultFailed,
	"Refused":          resultRefused,
}

// currencyDecimals lists the currencies whose Adyen minor unit differs from ISO 4217
var currencyDecimals = map[string]int32{
	"BHD": 3,
	"CVE": 0,
	"IDR": 0,
	"ISK": 0,
	"JOD": 3,
	"KWD": 3,
	"LYD": 3,
	"OMR": 3,
	"TND": 3,
}
