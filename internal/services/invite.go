package services

import (
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/studhelper/studhelper/pkg/crypto"
)

const (
	// InviteCodeAlphabet excludes the look-alike characters 0, O, I and l.
	InviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ123456789"
	// InviteCodeLength is the fixed invite code size.
	InviteCodeLength = 8

	defaultInviteAttempts = 10
	inviteQRSize          = 256
)

// CodeGenerator produces candidate invite codes.
type CodeGenerator func() (string, error)

// RandomInviteCode draws an invite code from InviteCodeAlphabet.
func RandomInviteCode() (string, error) {
	return crypto.RandomString(InviteCodeAlphabet, InviteCodeLength)
}

// NormaliseInviteCode trims and upper-cases user supplied codes.
func NormaliseInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// InviteLink builds the deep link that starts the join dialog for code.
func InviteLink(host, botHandle, code string) string {
	host = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(host), "https://"), "http://"), "/")
	botHandle = strings.TrimPrefix(strings.TrimSpace(botHandle), "@")
	return fmt.Sprintf("https://%s/%s?start=%s", host, botHandle, url.QueryEscape(code))
}

// InviteQRCode renders the invite link as a PNG QR code.
func InviteQRCode(host, botHandle, code string) ([]byte, error) {
	png, err := qrcode.Encode(InviteLink(host, botHandle, code), qrcode.Medium, inviteQRSize)
	if err != nil {
		return nil, fmt.Errorf("invite qr code: %w", err)
	}
	return png, nil
}
