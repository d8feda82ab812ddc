// Package category defines the fixed table of email categories used for
// classification and Gmail labelling.
//
// The table is ordered: the classifier instructs the model to answer with the
// category number (1..9), and the label reconciler creates one namespaced label
// per entry using the entry's colour pair.
package category
