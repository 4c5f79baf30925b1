// Package transparency tells a caller why a turn ended the way it did.
//
// Every terminal outcome falls into one of four categories:
//
//   - Ambiguity: low-confidence intent, unresolved asset, implausible value.
//     Recoverable in the same conversation by answering the clarification.
//   - Structural: the generator produced something malformed or a required
//     role was missing. Never retried automatically.
//   - Policy: a governed change was denied or no approval path exists.
//   - Backend: the simulator timed out, failed or did not converge.
//
// Reasons are prefixed with the category tag so front ends can choose
// between rephrasing, retrying and escalating without parsing free text.
package transparency
