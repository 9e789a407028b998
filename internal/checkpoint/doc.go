// Package checkpoint implements the .napc model file format.
//
// A .napc file stores named float64 tensors behind a self-describing
// JSON header:
//
//	0x00  magic "NAPC"
//	0x04  format version (uint32, little endian)
//	0x08  flags (uint32)
//	0x0C  reserved
//	0x10  header size (uint64)
//	0x18  data size (uint64)
//	0x20  SHA-256 of the data section (32 bytes)
//	0x40  JSON header, zero padded to a 64-byte boundary
//	....  tensor data, float64 little endian
//
// The checksum covers the data section only, so a reader can validate
// it before decoding any tensor.
//
// Save and Load operate on an nn.Module: every parameter is stored under
// "<index>.<name>", persistent masks under "<index>.<name>.mask", and an
// optional optimizer state under "optim.<key>".
package checkpoint
