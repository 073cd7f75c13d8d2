package models

// OTP purposes.
const (
	OTPPurposeLogin     = "LOGIN"
	OTPPurposeBindPhone = "BIND_PHONE"
)

// OTPRequest is the body of POST /api/auth/otp. Code is only set when
// verifying.
type OTPRequest struct {
	Phone   string `json:"phone"`
	Code    string `json:"code,omitempty"`
	Purpose string `json:"purpose"`
}

// CodeRequest carries a WeChat login code.
type CodeRequest struct {
	Code string `json:"code"`
}

// WechatSession is the code2session result. The session key stays on
// the server.
type WechatSession struct {
	OpenID  string `json:"openId"`
	UnionID string `json:"unionId"`
}

// PhoneRequest is the body of POST /api/auth/wechat/phone. Newer
// clients send Code; older ones EncryptedData and IV.
type PhoneRequest struct {
	Code          string `json:"code,omitempty"`
	EncryptedData string `json:"encryptedData,omitempty"`
	IV            string `json:"iv,omitempty"`
}

// PhoneResult is the decrypted phone number.
type PhoneResult struct {
	Phone string `json:"phone"`
}
