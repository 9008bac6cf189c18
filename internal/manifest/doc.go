/*
Package manifest holds the worker's compiled-in configuration: the package
list, the main script and the sample data it reads.

Each can be overridden from disk. Package manifests are TOML or YAML:

	packages = ["panel", "hvplot", "https://cdn.example.com/plotkit-0.3.1.whl"]

	packages:
	  - panel
	  - plotkit>=0.3
*/
package manifest
