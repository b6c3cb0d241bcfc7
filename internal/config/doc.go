// Package config defines configuration for the patstat-get CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (EPO_BDDS_USERNAME, EPO_BDDS_PASSWORD, PATSTAT_ prefix),
//     optionally loaded from a .env file
//   - An INI file (default config.cf), or YAML when the name ends in .yaml/.yml
//
// # File layout
//
//	[creds]
//	user = someone@example.com
//	pass = secret
//
//	[data]
//	path = /data/patstat
//
//	[api]
//	variant = bdds   ; or legacy
//	product = PATSTAT Global
//	timeout = 0
package config
