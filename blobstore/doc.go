// Package blobstore abstracts the storage backends the receipt archive
// writes to.
//
// The workload is write-mostly: pulse-sized segments are Put once,
// listed, and occasionally read back whole. Backends exist for memory
// (tests), the local filesystem (mmap-backed reads), MinIO and S3.
package blobstore
