// Package render turns a deployment record into the generated artifacts:
// the environment descriptor, the systemd unit, the manual launcher and the
// crontab registration helper. Rendering is pure; identical records produce
// byte-identical output.
package render
