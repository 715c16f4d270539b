package constants

const (
	AppCartService = "cart-service"
	AudienceUser   = "audience-user"
)
