package config_test

import (
	"fmt"
	"log"

	"github.com/ajitpratap0/stagecopy/pkg/config"
)

// ExampleNewConfig demonstrates the defaults applied to a Redshift config.
func ExampleNewConfig() {
	cfg := config.NewConfig(config.KindRedshift)

	fmt.Printf("Port: %d\n", cfg.Connection.Port)
	fmt.Printf("SSL mode: %s\n", cfg.Connection.SSLMode)
	fmt.Printf("Storage workers: %d\n", cfg.Storage.Concurrency)

	// Output:
	// Port: 5439
	// SSL mode: require
	// Storage workers: 5
}

// ExampleConfig_Validate shows validation of a Snowflake configuration.
func ExampleConfig_Validate() {
	cfg := config.NewConfig(config.KindSnowflake)
	cfg.Connection.Account = "xy12345.us-east-1"
	cfg.Connection.User = "loader"
	cfg.Connection.Warehouse = "LOAD_WH"

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("Configuration is valid!")

	// Output:
	// Configuration is valid!
}

// ExampleConnectionFromMap converts a flat connection mapping.
func ExampleConnectionFromMap() {
	conn, err := config.ConnectionFromMap(map[string]interface{}{
		"host":             "cluster.example.com",
		"port":             5439,
		"dbname":           "analytics",
		"user":             "loader",
		"keepalives_idle":  30,
		"application_name": "stagecopy",
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(conn.Database, conn.Port)
	fmt.Println(conn.ExtraKeys())

	// Output:
	// analytics 5439
	// [application_name keepalives_idle]
}
