// Discord slash commands for the planner.
//
// Each command has a public function registering its info & handler into
// AppState, and a private function doing the work. Handlers read blocks
// through AppState.Engine so viewing a day from Discord materializes it the
// same way the HTTP API does.
//
// Only return errors when it's the backend's fault, reply to the user otherwise.
package handler
