/*
Package bootstrap starts a worker's script runtime and relays messages
between it and the host page.

Startup posts status messages as it goes:

	Loading runtime
	Loaded runtime
	Installing <name>            (per package, in order)
	Error while installing <name> (per failed package, startup continues)
	Executing code

and ends with a render message, or with a status carrying the failing line of
the main script's error. Only the latter stops startup.

Inbound messages are handled one at a time and never overlap a startup step:

	rendered  link document changes to outbound patch messages
	patch     apply the JSON patch, then post idle
	location  copy recognized fields onto the document location
*/
package bootstrap
