// package models defines the data types shared across favark's services,
// sync engine, and reporting layers.
package models
