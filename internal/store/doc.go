// Package store keeps records in a bucket of a kv.Store.
//
// A Collection holds any number of records of one type, keyed by the
// identifier each record reports through ID. A Slot holds at most one
// record. Both are addressed by a namespace string; two stores must never
// be opened on the same namespace, since each instance serialises access
// with its own private lock.
//
// Keys inside a namespace's bucket follow a fixed layout:
//
//	{ns}-{id}                                  record
//	{ns}-count                                 record count
//	{ns}-last-snapshot-date                    collection snapshot time
//	{ns}-last-restore-date                     collection restore time
//	{ns}-single-object                         slot value
//	{ns}-single-object-last-snapshot-date      slot snapshot time
//	{ns}-single-object-last-restore-date       slot restore time
//
// Identifiers are escaped so that a record key never contains a "-" after
// the namespace prefix and never equals the count key, which keeps records
// and bookkeeping entries apart.
package store
