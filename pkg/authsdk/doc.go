/*
Package authsdk provides a client SDK for the starterkit authentication service.

# Overview

The package is organized around three types:

  - Client: unauthenticated operations (sign-up, sign-in, health) and the
    trusted-device token of the device it runs on
  - Session: operations on behalf of a signed-in user
  - Challenge: a pending second-factor check returned by sign-in

Create a Client and sign in:

	client := authsdk.NewClient("https://auth.example.com")

	session, err := client.SignIn(ctx, "ada@example.com", password)
	var required *authsdk.TwoFactorRequiredError
	if errors.As(err, &required) {
		// The password was right; a second factor is needed.
		session, err = required.Challenge.VerifyTOTP(ctx, code, trustDevice)
	}

# Two-factor Enrollment

Enrollment is two calls on a Session. EnableTwoFactor re-verifies the
password and returns an otpauth:// URI; VerifyTOTP confirms a code generated
from it and turns two-factor on:

	setup, err := session.EnableTwoFactor(ctx, password, "")
	// show setup.TOTPURI as a QR code
	err = session.VerifyTOTP(ctx, code)

Calling EnableTwoFactor again before the code is confirmed abandons the
first secret.

# Challenges

A Challenge accepts either an authenticator code or a backup code:

	session, err := challenge.VerifyTOTP(ctx, "123456", true)
	session, err := challenge.VerifyRecoveryCode(ctx, "ABCD-EFGH", false, false)

Each backup code works once. A challenge allows a limited number of wrong
codes; after that the server answers too_many_attempts and the sign-in has to
start again.

When VerifyTOTP is called with trustDevice set, the server hands out a device
token which the Client remembers and sends with later sign-ins. Persist it
with DeviceToken and restore it with SetDeviceToken.

# Backup Codes

	codes, err := session.ListBackupCodes(ctx)
	codes, err = session.RegenerateBackupCodes(ctx, password)

Regenerating replaces the whole set; the previous codes stop working at once.

# Error Handling

Service rejections are returned as *APIError carrying the HTTP status and a
machine readable code:

	if authsdk.ErrorCode(err) == authsdk.ErrorCodeInvalidTOTPCode {
		// ask again
	}

Sign-in returns *TwoFactorRequiredError when a second factor is needed.

# Thread Safety

Client and Session are safe for concurrent use.
*/
package authsdk
