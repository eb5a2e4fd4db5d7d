package common

// AuthorizationHeaderName is the HTTP header used to carry the access token
// on authenticated requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix is the expected prefix of the Authorization header value.
const BearerPrefix = "Bearer "
