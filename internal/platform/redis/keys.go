package redis

// Key layout. Everything lives under the "offload:" prefix so a shared
// Redis server stays navigable.
//
//	offload:job:<id>        hash    one job record
//	offload:queue:<name>    list    ready messages for a queue
//	offload:delayed:<name>  zset    delayed messages, scored by due time

const keyPrefix = "offload:"

func jobKey(id string) string       { return keyPrefix + "job:" + id }
func queueKey(name string) string   { return keyPrefix + "queue:" + name }
func delayedKey(name string) string { return keyPrefix + "delayed:" + name }
