// Package logging holds the slog attribute helpers shared across inboxtagger.
//
// Attribute keys are fixed here so that every component logs an account id
// as user_id, a message id as message_id and so on:
//
//	logger := logging.WithOperation(slog.Default(), "pipeline.run")
//	logger.Info("message labeled",
//	    logging.MessageID(msg.ID),
//	    logging.Category("to respond"))
//
// Addresses and credentials never reach the log verbatim. UserHash replaces
// an address with a truncated SHA-256 and SanitizeToken keeps only a length.
package logging
