// Package i2c reads I2C environmental sensors through the Linux i2c-dev
// interface using the tinygo driver collection.
package i2c
