// Package logging provides structured logging for the Gray Logic switch.
//
// It wraps log/slog so that every component logs the same way: JSON on a
// deployed device, text on a bench console, and service/version attributes
// on every record.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("publish succeeded", "topic", topic, "payload", payload)
//
// Never log broker passwords, Wi-Fi passphrases or the OTA password.
package logging
