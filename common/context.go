package common

type contextKey string

// AuthInfoKey carries the validated JWT claims through request contexts.
const AuthInfoKey contextKey = "authInfo"
