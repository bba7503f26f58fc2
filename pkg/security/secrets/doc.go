// Package secrets resolves ${secret:name} references in configuration
// values.
//
// Credentials such as the policy repository token should not be written
// into certify.yaml. A value may instead reference a secret by name:
//
//	policy:
//	  git:
//	    auth:
//	      type: token
//	      token: ${secret:policy-repo-token}
//
// References are resolved by a Manager that tries its providers in order:
//
//   - FileProvider reads <dir>/<name>, e.g. a mounted Kubernetes secret.
//     Files must be readable by the owner only (0600 or 0400).
//   - EnvProvider reads CERTIFY_SECRET_<NAME>, with the name upper-cased
//     and hyphens replaced by underscores.
//
// Resolved values are never logged.
package secrets
