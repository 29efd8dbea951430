// Package directory applies contact-discovery answers to the recipient
// store. Each answer is a high-trust (ACI, phone) pair unless stated
// otherwise, and is merged in its own write transaction so one bad answer
// never rolls back the others.
package directory
