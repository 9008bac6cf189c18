/*
Package packages installs script modules into the worker runtime.

# Specs

A package spec is either a URL to an archive or a requirement:

	https://cdn.example.com/wheels/plotkit-0.3.1-py3-none-any.whl
	file:///srv/wheels/layout-1.0.0.zip
	dateutil
	plotkit>=0.3

Archives may be zip (.whl, .zip), gzip tar (.tar.gz, .tgz) or zstd tar
(.tar.zst). The format is sniffed from content, not trusted from the name.
Every .js file inside becomes a module; "pkg/index.js" is also reachable as
"pkg".

A URL may pin the archive with a digest fragment; a mismatch fails the
install:

	https://host/plotkit-0.3.1.whl#sha256=<hex>
	https://host/plotkit-0.3.1.whl#blake2b_256=<hex>

Accepted algorithms are sha256, sha384, sha512 and blake2b_256.

# Resolution

Requirements resolve against the builtin modules compiled into the worker
first, then against archives in the wheelhouse directory, picking the highest
version that satisfies the specifier.

# Display names

Name derives the short name shown in status messages:

	Name("https://host/a/b/foo-1.2.3-py3-none-any.whl") == "foo"
	Name("holoviews>=1.15.1") == "holoviews>=1.15.1"
*/
package packages
