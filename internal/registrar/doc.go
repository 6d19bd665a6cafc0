// Package registrar abstracts the two pieces of global mutable host state
// this tool touches: the service manager's unit directory and the periodic
// task table.
package registrar
