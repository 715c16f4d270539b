package log

const (
	KeyAppName       = "app"
	KeyRequestID     = "requestId"
	KeyProcess       = "process"
	KeyTag           = "tag"
	KeyConfig        = "config"
	KeyRequest       = "request"
	KeyHeader        = "header"
	KeyBody          = "body"
	KeyRequestHost   = "host"
	KeyRequestIp     = "requesterIP"
	KeyRequestMethod = "requestMethod"
	KeyRequestURI    = "requestURI"
	KeyRequestURL    = "requestURL"
	KeyUserID        = "userId"
	KeyProductID     = "productId"
	KeyItemID        = "itemId"
	KeyQuantity      = "quantity"
	KeyCartItems     = "cartItems"
	KeyCoupon        = "coupon"
	KeySummary       = "summary"
	KeySeq           = "seq"
	KeySavedSeq      = "savedSeq"
	KeyOrderID       = "orderId"
	KeyTxnID         = "txnId"
	KeyCacheKey      = "cacheKey"
	KeyDbURL         = "dbUrl"
)
