// Package mqttbridge mirrors fleet state onto an MQTT broker and accepts
// device commands from it.
//
// State and availability messages are retained, so consumers joining late
// immediately see the current fleet. Commands arrive on the per-device
// command topic as JSON and are routed through the control dispatcher,
// which also feeds the polling schedule.
package mqttbridge
