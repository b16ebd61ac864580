/*
Package config resolves everything a watch session needs before it starts.

	            +-------------+
	            |   Config    |
	            +------+------+
	                   |
	      +------------+------------+
	      |                         |
	+-----+-------+          +------+------+
	| Credentials |          | WatchConfig |
	|  (.env +    |          | (yaml, hcl, |
	| env + flags)|          |    json)    |
	+-------------+          +-------------+

🎯 Purpose:
- Reads the credential file written by the auth flow
- Lets --api-key / --backend-url and the environment override it
- Loads optional session tunables (project, stability window, concurrency)

🔄 Precedence for credentials (highest first):
 1. changed command line flags
 2. MGREP_API_KEY / BACKEND_URL environment variables
 3. the .env credential file in the working directory
 4. built-in defaults (backend URL only)

A missing API key is a startup error; the watch never begins without one.
*/
package config
