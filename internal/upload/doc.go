// Package upload ships readings to PVOutput's add-status service.
//
// [Client] performs one authenticated form POST per reading. [Sink] drains a
// reading source through an [Uploader], strictly one upload at a time and in
// source order. Non-success HTTP statuses are logged and skipped; transport
// failures stop the sink with a [*TransportError].
package upload
