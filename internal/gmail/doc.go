// Package gmail wraps the Gmail API operations the ingestion pipeline needs.
//
// The package covers four concerns:
//   - Client: label listing and creation, unread listing, message fetch and
//     label application for one authenticated mailbox
//   - Body extraction: turning a MIME payload tree into plain text, preferring
//     text/plain parts and reducing HTML to text otherwise
//   - Label reconciliation: ensuring every category has a namespaced label
//     such as "Amurex/to respond"
//   - Error classification: telling permission failures (the user must
//     reconnect) apart from other API errors
//
// Authentication is supplied by the caller through option.ClientOption,
// usually an oauth2 token source built by the google package.
//
// Example usage:
//
//	client, err := gmail.NewClient(ctx, metrics, option.WithTokenSource(ts))
//	if err != nil {
//	    return err
//	}
//	existing, err := client.ListLabels(ctx)
//	if err != nil {
//	    return err
//	}
//	labels, err := gmail.NewLabelReconciler("Amurex", logger).Reconcile(ctx, client, existing, false)
package gmail
