// Package git keeps a local checkout of a Git-hosted policy repository.
//
// When policy.git.enabled is set, commands call Source.Sync before
// indexing: the first call clones the configured branch into
// policy.git.local_path, later calls pull it. The policy index is then
// built from Source.PolicyPath.
//
// Authentication supports HTTPS tokens, SSH keys and anonymous access:
//
//	policy:
//	  git:
//	    enabled: true
//	    repository: "https://github.com/company/compliance-policies.git"
//	    branch: "main"
//	    auth:
//	      type: "token"
//
// The token is best supplied through CERTIFY_POLICY_GIT_AUTH_TOKEN.
package git
