package component

import "compress-service/pkg/manager"

func init() {
	manager.RegisterComponentPlugin(&CompressRequestConsumerPlugin{})
	manager.RegisterComponentPlugin(&SessionSweeperPlugin{})
}
