package config

const (
	// TopicIndexRebuild is the NSQ topic for index rebuild requests.
	TopicIndexRebuild = "index.rebuild"

	// ChannelIndexer is the consumer channel the rebuild worker listens on.
	ChannelIndexer = "indexer"
)
