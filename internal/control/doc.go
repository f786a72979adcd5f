// Package control routes device commands from the HTTP API and the MQTT
// command topic to the managed device clients, and feeds command
// outcomes back into the polling schedule.
package control
