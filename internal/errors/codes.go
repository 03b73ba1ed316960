package errors

// Code is a backend error code as carried in the "code" field of an error
// response body.
type Code string

// Auth and token codes.
const (
	CodeAuthInvalidCredentials Code = "AUTH_INVALID_CREDENTIALS"
	CodeAuthMissingToken       Code = "AUTH_MISSING_TOKEN"
	CodeTokenInvalidAccess     Code = "TOKEN_INVALID_ACCESS"
	CodeTokenInvalidRefresh    Code = "TOKEN_INVALID_REFRESH"
	CodeTokenExpiredRefresh    Code = "TOKEN_EXPIRED_REFRESH"
	CodeXSRFTokenMismatch      Code = "XSRF_TOKEN_MISMATCH"
)

// Domain codes. The session layer passes these through untouched.
const (
	CodeUserNotFound          Code = "USER_NOT_FOUND"
	CodeUserInvalidLoginID    Code = "USER_INVALID_LOGIN_ID"
	CodeUserInvalidNickname   Code = "USER_INVALID_NICKNAME"
	CodeUserDuplicateLoginID  Code = "USER_DUPLICATE_LOGIN_ID"
	CodeGroupNotFound         Code = "GROUP_NOT_FOUND"
	CodeGroupNotMemberOrOwner Code = "GROUP_NOT_MEMBER_OR_OWNER"
	CodePostNotFound          Code = "POST_NOT_FOUND"
	CodePostNotOwner          Code = "POST_NOT_OWNER"
	CodeChatSelfNotAllowed    Code = "CHAT_SELF_NOT_ALLOWED"
	CodeImageEmpty            Code = "IMAGE_EMPTY"
	CodeImageUnsupportedType  Code = "IMAGE_UNSUPPORTED_TYPE"
	CodeImageTooLarge         Code = "IMAGE_TOO_LARGE"
	CodeImageInfoNotFound     Code = "IMAGE_INFO_NOT_FOUND"
	CodeCursorInvalid         Code = "CURSOR_INVALID"
	CodeServerError           Code = "SERVER_ERROR"
	CodeParameterInvalid      Code = "PARAMETER_INVALID"
)

// Client-side codes that never come from the backend.
const (
	CodeUnknown               Code = "UNKNOWN_ERROR"
	CodeInvalidResponseSchema Code = "INVALID_RESPONSE_SCHEMA"
)

var messages = map[Code]string{
	CodeAuthInvalidCredentials: "Check your login ID or password.",
	CodeAuthMissingToken:       "The request carried no authentication token.",
	CodeTokenInvalidAccess:     "The access token is not valid.",
	CodeTokenInvalidRefresh:    "The refresh token is not valid.",
	CodeTokenExpiredRefresh:    "The refresh token has expired.",
	CodeXSRFTokenMismatch:      "The XSRF token does not match.",
	CodeUserNotFound:           "User not found.",
	CodeUserInvalidLoginID:     "Use 5 to 20 letters, or letters and digits.",
	CodeUserInvalidNickname:    "The nickname format is not valid.",
	CodeUserDuplicateLoginID:   "This login ID is already taken.",
	CodeGroupNotFound:          "Group not found.",
	CodeGroupNotMemberOrOwner:  "You are not a member or the owner of this group.",
	CodePostNotFound:           "Post not found.",
	CodePostNotOwner:           "You are not the owner of this post.",
	CodeChatSelfNotAllowed:     "You cannot start a chat with yourself.",
	CodeImageEmpty:             "Attach an image.",
	CodeImageUnsupportedType:   "This image type is not allowed.",
	CodeImageTooLarge:          "The image is larger than 5MB.",
	CodeImageInfoNotFound:      "Post image information not found.",
	CodeCursorInvalid:          "Invalid cursor.",
	CodeServerError:            "Server error. Please try again.",
	CodeParameterInvalid:       "Request parameter validation failed.",
}

// Message returns the user-facing text for a code, or "" when the code is
// unknown.
func Message(code Code) string {
	return messages[code]
}

// IsTerminalRefresh reports whether the code means the refresh token itself
// is no longer usable and the session must be signed out.
func IsTerminalRefresh(code Code) bool {
	return code == CodeTokenExpiredRefresh || code == CodeTokenInvalidRefresh
}
