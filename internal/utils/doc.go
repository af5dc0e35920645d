// Package utils exposes reusable helpers consumed by the CLI and the synchronize command.
//
// It houses ConfigurationLoader and LoggerFactory abstractions that integrate
// Viper, environment variables, and zap logging, plus the accessor used to pass
// root command state through cobra contexts.
package utils
