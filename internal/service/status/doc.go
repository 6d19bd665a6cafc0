// Package status reports the observable state of a deployment: which
// generated artifacts exist, whether the credential placeholder has been
// replaced and whether the uploader process is running.
package status
