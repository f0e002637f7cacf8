// Command heliosd is the supervisory core of a multi-worker L4/L7 proxy
// process: it owns configuration loading, the admin interface, hot
// restart, draining, and the watchdog, and hosts the filter chains and
// cluster manager an external collaborator supplies.
//
// Usage:
//
//	# Start the server with a configuration file
//	heliosd run --config /etc/helios/config.yaml
//
//	# Start as restart epoch 1, inheriting listen sockets from epoch 0
//	heliosd run --config /etc/helios/config.yaml --restart-epoch 1
//
//	# Show version information
//	heliosd version
package main

func main() {
	Execute()
}
