// Package hostcmd wraps synchronous host command execution behind a small
// interface so components that shell out (pip, crontab) stay testable.
package hostcmd
