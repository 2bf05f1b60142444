// Package mqtt wraps paho.mqtt.golang for the optional report fan-out.
//
// When enabled, every accepted site report is published to the broker so
// external integrations (dashboards, alerting pipelines) can consume the
// same stream the websocket subscribers see. The backend only publishes;
// it never subscribes.
//
// The client maintains the connection with automatic reconnection and a
// Last Will message on facility/system/status, so consumers can detect an
// unexpected backend crash.
package mqtt
