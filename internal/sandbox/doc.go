/*
Package sandbox hosts the worker's script runtime.

# Overview

A Runtime wraps one goja VM for the lifetime of a worker session, together
with the document the scripts build and the package manager that feeds
require. goja VMs are not safe for concurrent use; every entry point takes the
runtime lock, and callers are expected to serialize their own sequences of
calls on top of that.

# Globals

Scripts see these globals:

  - console: log, info, warn, error and debug, captured and sent to the logger
  - require: CommonJS loader over installed packages
  - sendPatch(patch, buffers, msgID): hands a patch to the patch callback
  - doc: model(type, attrs), addRoot, removeRoot, setTitle, enableLocation,
    location, get(id) and write()
  - data: read(path, delimiter) and shiftMonths(isoDate, n)

doc.write() evaluates to [docs_json, render_items, root_ids], which is what
the main script must end with.

Model handles expose id, type, get(attr), set(attr, value), add(...children)
and watch(attr, fn). Changes to models attached to the document are
broadcast to document listeners with the "script" setter.

# Errors

Uncaught exceptions become *ScriptError, whose text lists the stack, most
recent call last, then the exception line:

	Traceback (most recent call last):
	  at main.js:4:1(3)
	  at f (main.js:2:9(3))
	Error: boom

Execution is interrupted when the call's context ends or the configured
timeout passes.
*/
package sandbox
