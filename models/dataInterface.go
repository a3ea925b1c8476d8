package models

// Data is implemented by reference models served through the per-request
// dataloaders. GetDefault returns a placeholder row for ids that no longer
// exist so loader results stay positionally aligned with the requested keys.
type Data interface {
	GetId() int
	GetDefault(id int) interface{}
}
