// Package volume defines the Reading type, the change-detection rule, and the
// contracts (Extractor, Store, Clock, BlobStore, Publisher) that the scrape
// pipeline wires together.
package volume
