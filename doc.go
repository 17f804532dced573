// Package checkout is the Go SDK for the GrayPay embeddable checkout flow.
// It drives a multi-step card or bank-transfer payment against the GrayPay
// gateway while leaving rendering entirely to the host application.
//
// # Widget
//
// Use [New] with a [PaymentConfiguration] and a [GatewayClient] to obtain a
// [Widget], the orchestrator for one mounted checkout instance. Call
// [Widget.EnsureInitialized] whenever the host re-renders: initialization is
// issued at most once per distinct configuration, with concurrent requests
// across widget instances coalesced by a shared [InitStore].
//
// Options such as [WithScheduler], [WithNavigator], and [WithInitStore]
// substitute the platform capabilities (timers, navigation, clipboard, the
// dedup store) so the orchestration core runs deterministically in tests.
//
// # Backend
//
// The server subpackage exposes the validate-and-forward endpoint merchants
// deploy in front of the gateway. It repeats the client-side Luhn, brand,
// and expiry checks, masks card data, and never logs or stores the full
// card number, CVV, or PIN.
package checkout
