package http

import "compress-service/pkg/manager"

func init() {
	manager.RegisterRoutePlugin(&CompressRoutePlugin{})
}
