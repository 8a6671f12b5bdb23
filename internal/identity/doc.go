// Package identity verifies bearer tokens against the external identity
// service and returns the caller's account.
//
// The service answers GET <url>/api/me with either {"user": {...}} or the
// flat user object. Status codes are classified with the services sentinels
// so transports can map them without knowing the remote protocol.
package identity
