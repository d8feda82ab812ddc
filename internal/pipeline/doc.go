// Package pipeline ingests a user's unread Gmail messages.
//
// A run checks the account, opens the mailbox with the OAuth client the
// account's refresh token belongs to, makes sure every category label exists,
// and lists unread messages. Messages already stored for the account are
// skipped. The first ClassifyCap new messages are classified and labelled;
// every new message is stored. A run processes messages sequentially.
//
// Only permission failures abort a run once the mailbox is open. Other
// per-message failures are logged and reported in the message's result.
package pipeline
