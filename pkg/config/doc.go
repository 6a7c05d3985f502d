// Package config loads stagecopy configuration.
//
// # Usage
//
// ## Reading a connection file
//
// ReadConfig returns the raw key/value mapping of a YAML file. It is the
// lowest-level entry point and is what the warehouse drivers consume when a
// caller only has a flat connection file:
//
//	host: my-cluster.example.com
//	port: 5439
//	database: analytics
//	user: loader
//	password: ${REDSHIFT_PASSWORD}
//
// ## Loading a full Config
//
//	cfg, err := config.LoadFile("stagecopy.yaml", config.KindRedshift)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// ${VAR_NAME} references are replaced with environment values before parsing.
// Unknown connection keys are kept in Connection.Extra and passed to the
// driver as-is.
package config
