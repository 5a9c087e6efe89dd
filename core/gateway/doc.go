/*Package gateway implements the wayfarer data-access gateway.

The gateway is a single network-facing entry point

	POST /api?action=<action>

accepting structured action requests against a fixed allow-list of tables.
Recognized actions are setup, select, batch, insert, update, upsert, delete,
and the privileged admin_select, admin_insert, admin_update, admin_upsert and
admin_delete variants.

Each request is translated into one parameterized SQL statement (writes add a
RETURNING clause to echo the affected row) executed on a single connection
checked out from the bounded pool for the duration of the request.

Ownership

Every row belongs to the user_id that created it. For the non-privileged
write actions the gateway is the only writer of that column: insert and
upsert force user_id to the authenticated subject, and update and delete
always append the ownership condition user_id = subject to the WHERE clause,
after whatever match the caller supplied. The privileged variants omit both,
gated instead by a role lookup that runs fresh on every call.

Request bodies

	select:  {"table": ..., "filters": {...}, "order": {"column": ..., "ascending": ...}, "single": ..., "withSteps": ...}
	insert:  {"table": ..., "data": {...}}
	update:  {"table": ..., "data": {...}, "match": {...}}
	upsert:  {"table": ..., "data": {...}, "onConflict": [...]}
	delete:  {"table": ..., "match": {...}}
	batch:   {"queries": [{"action": "select", "table": ..., ...}, ...]}

Successful reads and row-returning writes answer {"data": ...}, delete and
setup answer {"success": true}, batch answers {"results": [...]} aligned to
request order. Every failure answers {"error": "..."} with the appropriate
status code.

A select on the roadmaps table may set withSteps to receive every roadmap
with its roadmap_steps attached under "steps", ordered by step_order. The
array is always present, empty for roadmaps without steps.
*/
package gateway
