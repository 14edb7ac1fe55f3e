// Command pagecapture hosts the capture daemon.
//
// `pagecapture watch` runs the hot-folder scan loop and staging maintenance
// until interrupted, `pagecapture scan` performs one pass and prints what was
// ingested, and `pagecapture config init` writes a sample configuration.
package main
