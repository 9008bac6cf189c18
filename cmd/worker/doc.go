/*
Command worker serves dashboard worker sessions.

Each page that connects to /worker gets its own script runtime. The worker
installs the manifest packages, runs the main script, posts the rendered
document and then relays patches and location updates between the page and
the runtime.

Configuration comes from the environment (PORT, HOST, RUNTIME_TIMEOUT,
MAIN_SCRIPT, DATA_DIR, PACKAGE_MANIFEST, WHEELHOUSE, FETCH_*, LOG_*,
RATE_LIMIT_*); flags override the most common ones.

Usage:

	worker [-port 8000] [-main app.js] [-packages packages.toml] [-dev]
*/
package main
