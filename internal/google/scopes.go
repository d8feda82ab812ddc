package google

import gmail "google.golang.org/api/gmail/v1"

// GmailScopes are the scopes the pipeline needs: reading messages and
// applying labels (modify) and creating labels (labels).
//
// Accounts connected with a narrower grant fail at the first Gmail call with
// a permission error and have to reconnect.
var GmailScopes = []string{
	gmail.GmailModifyScope,
	gmail.GmailLabelsScope,
}
