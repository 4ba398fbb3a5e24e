// Package config resolves the settings of the sleuth command.
//
// [Load] starts from [Default], overlays an optional HCL file, then overlays
// variables from a .env file and the process environment (the process wins),
// and finally validates the result. A typical file:
//
//	model       = "gpt-4o-mini"
//	temperature = 0
//	max_results = 3
//	search_backend = "brave"
//
//	completion {
//	  retries = 3
//	  timeout = "90s"
//	  log     = "standard"
//	}
//
//	checkpoint {
//	  backend = "sqlite"
//	  dsn     = "sleuth.db"
//	}
//
//	telemetry {
//	  backend         = "prometheus"
//	  log_format      = "pretty"
//	  log_level       = "debug"
//	  metrics_address = ":9464"
//	}
package config
