// export_test.go exports private functions for white-box testing.
package logger

// FormatChainExported exports the private chain formatting function for testing.
var FormatChainExported = formatChain
