// Package twofactor contains the client-side flows for managing and using
// two-factor authentication against the starterkit auth service.
//
// Each flow is a small controller owning its ephemeral state:
//
//   - Enrollment walks password, secret display and code confirmation.
//   - Disable and Regenerate are single password prompts.
//   - Resolver finishes a sign-in that needs a second factor.
//   - RecoveryCodes shows, copies and exports the remaining backup codes
//     through a CodeCache shared with Regenerate.
//
// Controllers take the service as an explicit argument. In production that
// is an *authsdk.Session or *authsdk.Challenge; tests pass fakes. Only one
// submission per controller may be in flight, and a result that arrives
// after Close is dropped.
//
// Example:
//
//	sess, err := client.SignIn(ctx, email, password)
//	var tfa *authsdk.TwoFactorRequiredError
//	if errors.As(err, &tfa) {
//		r := twofactor.NewResolver(tfa.Challenge, twofactor.Options{})
//		r.SetCode(code)
//		if err := r.Submit(ctx); err != nil {
//			return err
//		}
//		sess = r.Session()
//	}
package twofactor
